package clinical_nlp

// sampleLabReport is an OCR'd liver function report with typical scanner noise.
const sampleLabReport = `
i SO : 9001-2008

SARVODAYA HOSPITAL Dr. (Capt) Atul per (Rott) MB Path
KJ-7, Kavi Nagar, Ghaziabad (U-P.) Regn No. MCI 3426

mi

[10 Investigation Observed Value Unit Biological Ref interval
IOCHEMISTRY

- VER FUNCTION TEST (LFT)

BILIRUBIN TOTAL es mg/dl 0,30- 1,20

CONJUGATED (D. BILIRUBIN) 7.79 H mg/dl 0.00 - 0.30
UNCONJUGATED (1.0.BILIRUBIN) 1.63 H mg/dl 0.00 - 0.70
SGOT 162 H WAL 0.00 - 46.00
SGPT 86 H WWAL 0.00 - 49.00
ALKALINE PHOSPHATASE 396 H U/L 42.00 - 128.00
TOTAL PROTEIN 6.2 gnvdl 6.20 - 3.00
ALBUMIN 3.7 L omdt 3.80 - 5.40
GLOBULIN 2.5 giivdl 1,50 - 3.60
AWG RATIO — 1.48 1.0-2.0
GAMMAT-GT 263 H IU/L 11,00 - 50.00
wo,

Specimen : SERUM
™ END OF REPORT **

CLINICAL CORELATION IS MANDATORY
`

// sampleClinicalNote is a short narrative note with inline lab values.
const sampleClinicalNote = `
Patient presents with chest pain and shortness of breath.
Denies fever and no cough.
History of diabetes and hypertension.
Hemoglobin: 10.2 g/dL
WBC = 12000 /mm3
ESR: 45 mm/hr
CT scan of chest performed.
Treated with aspirin and metformin.
`

//Personal.AI order the ending
